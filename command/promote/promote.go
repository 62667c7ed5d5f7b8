package promote

import (
	"context"
	"fmt"

	"github.com/itu-mlops/playtime-pipeline/command/config"
	"github.com/itu-mlops/playtime-pipeline/internal/ledger"
	"github.com/itu-mlops/playtime-pipeline/mlflow"
	"github.com/itu-mlops/playtime-pipeline/store/database"
	"github.com/itu-mlops/playtime-pipeline/types"

	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"
)

type promoteCommand struct {
	envFile string
}

// candidate is a run eligible for registration.
type candidate struct {
	run   *mlflow.Run
	value float64
}

func (c *promoteCommand) run(*kingpin.ParseContext) error {
	if err := config.LoadEnvFile(c.envFile); err != nil {
		return err
	}
	env, err := config.FromEnviron()
	if err != nil {
		return err
	}
	config.SetupLogger(&env)
	ctx := context.Background()

	db, err := database.ProvideDatabase(env.Database.Driver, env.Database.Datasource)
	if err != nil {
		logrus.WithError(err).Fatalln("promote: unable to open the run ledger")
	}
	rec, err := ledger.Begin(ctx, database.ProvideStageRunStore(db), types.StagePromote)
	if err != nil {
		logrus.WithError(err).Fatalln("promote: unable to record the stage run")
	}

	err = c.promote(ctx, &env)
	rec.Done(ctx, err)
	if err != nil {
		logrus.WithError(err).Errorln("promote: stage failed")
	}
	return err
}

func (c *promoteCommand) promote(ctx context.Context, env *config.EnvConfig) error {
	cli := mlflow.NewClient(env.Tracking.URL, env.Tracking.Token)

	experiment, err := cli.ExperimentByName(ctx, env.Tracking.Experiment)
	if err != nil {
		return fmt.Errorf("promote: experiment %q: %w", env.Tracking.Experiment, err)
	}
	runs, err := cli.SearchRuns(ctx, []string{experiment.ExperimentID}, "start_time DESC")
	if err != nil {
		return err
	}
	logrus.WithField("runs", len(runs)).
		WithField("experiment", env.Tracking.Experiment).
		Infoln("promote: runs found")

	best := bestRun(runs, env.Registry.Metric)
	if best == nil {
		return fmt.Errorf("promote: no finished run with metric %q", env.Registry.Metric)
	}
	logrus.WithField("run", best.run.Info.RunID).
		WithField(env.Registry.Metric, best.value).
		Infoln("promote: best run selected")

	version, err := registerAndPromote(ctx, cli, env, best)
	if err != nil {
		return err
	}
	logrus.WithField("model", env.Registry.ModelName).
		WithField("version", version.Version).
		WithField("stage", env.Registry.Stage).
		Infoln("promote: model promoted")

	return summarize(ctx, cli, env)
}

// bestRun picks the finished run with the lowest recorded value of the
// promotion metric. Unfinished runs and runs without the metric are
// skipped.
func bestRun(runs []*mlflow.Run, metric string) *candidate {
	var best *candidate
	for _, run := range runs {
		if run.Info.Status != mlflow.RunStatusFinished {
			continue
		}
		value, ok := run.Metric(metric)
		if !ok {
			continue
		}
		if best == nil || value < best.value {
			best = &candidate{run: run, value: value}
		}
	}
	return best
}

// registerAndPromote creates the registered model if missing, registers
// the best run's artifact as a new version, and transitions it into the
// target stage, archiving whatever held that stage before.
func registerAndPromote(ctx context.Context, cli mlflow.Client, env *config.EnvConfig, best *candidate) (*mlflow.ModelVersion, error) {
	_, err := cli.RegisteredModel(ctx, env.Registry.ModelName)
	switch {
	case mlflow.IsNotFound(err):
		logrus.WithField("model", env.Registry.ModelName).
			Infoln("promote: creating registered model")
		if err := cli.CreateRegisteredModel(ctx, env.Registry.ModelName, "Playtime prediction model using a random forest"); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	source := best.run.Info.ArtifactURI + "/" + env.Registry.ArtifactPath
	description := fmt.Sprintf("Best model with %s=%.4f", env.Registry.Metric, best.value)
	version, err := cli.CreateModelVersion(ctx, env.Registry.ModelName, source, best.run.Info.RunID, description)
	if err != nil {
		return nil, err
	}

	return cli.TransitionStage(ctx, env.Registry.ModelName, version.Version, env.Registry.Stage, true)
}

func summarize(ctx context.Context, cli mlflow.Client, env *config.EnvConfig) error {
	stages := []string{mlflow.StageNone, mlflow.StageStaging, mlflow.StageProduction}
	versions, err := cli.LatestVersions(ctx, env.Registry.ModelName, stages)
	if err != nil {
		return err
	}
	for _, v := range versions {
		logr := logrus.WithField("version", v.Version).
			WithField("stage", v.CurrentStage)
		if run, runErr := cli.GetRun(ctx, v.RunID); runErr == nil {
			if value, ok := run.Metric(env.Registry.Metric); ok {
				logr = logr.WithField(env.Registry.Metric, value)
			}
		}
		logr.Infoln("promote: registry summary")
	}
	return nil
}

// Register the promote command.
func Register(app *kingpin.Application) {
	c := new(promoteCommand)

	cmd := app.Command("promote", "registers the best run and promotes it in the model registry").
		Action(c.run)
	cmd.Flag("envfile", "load the environment variable file").
		Default("").
		StringVar(&c.envFile)
}
