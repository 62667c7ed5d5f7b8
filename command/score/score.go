package score

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/itu-mlops/playtime-pipeline/command/config"
	"github.com/itu-mlops/playtime-pipeline/dataset"
	"github.com/itu-mlops/playtime-pipeline/forest"
	"github.com/itu-mlops/playtime-pipeline/internal/ledger"
	"github.com/itu-mlops/playtime-pipeline/mlflow"
	"github.com/itu-mlops/playtime-pipeline/store/database"
	"github.com/itu-mlops/playtime-pipeline/types"

	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"
)

type scoreCommand struct {
	envFile string
}

func (c *scoreCommand) run(*kingpin.ParseContext) error {
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
		logrus.WithError(err).Fatalln("score: unable to open the run ledger")
	}
	rec, err := ledger.Begin(ctx, database.ProvideStageRunStore(db), types.StageScore)
	if err != nil {
		logrus.WithError(err).Fatalln("score: unable to record the stage run")
	}

	err = c.score(ctx, &env)
	rec.Done(ctx, err)
	if err != nil {
		logrus.WithError(err).Errorln("score: stage failed")
	}
	return err
}

// score loads the promoted model from the registry and prints its
// predictions for the prepared test set. It exists to demonstrate
// pulling a model out of the registry, not to evaluate it.
func (c *scoreCommand) score(ctx context.Context, env *config.EnvConfig) error {
	xTest, err := dataset.ReadFile(filepath.Join(env.Data.ProcessedDir, dataset.FileXTest))
	if err != nil {
		return err
	}
	// the release time columns exist only for slicing; the model never
	// sees them
	features, err := xTest.Matrix(dataset.TrainFeatures...)
	if err != nil {
		return err
	}

	cli := mlflow.NewClient(env.Tracking.URL, env.Tracking.Token)
	modelURI := fmt.Sprintf("models:/%s/%s", env.Registry.ModelName, env.Registry.Stage)
	logrus.WithField("model", modelURI).
		Infoln("score: loading model from registry")

	data, version, err := cli.ResolveStagedModel(ctx, env.Registry.ModelName, env.Registry.Stage, env.Registry.ArtifactFile)
	if err != nil {
		return err
	}
	model, err := forest.Unmarshal(data)
	if err != nil {
		return err
	}

	preds, err := model.PredictBatch(features)
	if err != nil {
		return err
	}
	for i, p := range preds {
		fmt.Printf("%d,%.4f\n", i, p)
	}

	logrus.WithField("version", version.Version).
		WithField("rows", len(preds)).
		Infoln("score: predictions rendered")
	return nil
}

// Register the score command.
func Register(app *kingpin.Application) {
	c := new(scoreCommand)

	cmd := app.Command("score", "loads the promoted model and prints predictions for the test set").
		Action(c.run)
	cmd.Flag("envfile", "load the environment variable file").
		Default("").
		StringVar(&c.envFile)
}
