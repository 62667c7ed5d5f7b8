package train

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

	"github.com/dchest/uniuri"
	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"
)

// evaluation slice: the test split holds post-cutoff games, scoring
// uses the first full year after the cutoff.
const evalYear = 2021

type trainCommand struct {
	envFile string
}

func (c *trainCommand) run(*kingpin.ParseContext) error {
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
		logrus.WithError(err).Fatalln("train: unable to open the run ledger")
	}
	rec, err := ledger.Begin(ctx, database.ProvideStageRunStore(db), types.StageTrain)
	if err != nil {
		logrus.WithError(err).Fatalln("train: unable to record the stage run")
	}

	err = c.train(ctx, &env)
	rec.Done(ctx, err)
	if err != nil {
		logrus.WithError(err).Errorln("train: stage failed")
	}
	return err
}

func (c *trainCommand) train(ctx context.Context, env *config.EnvConfig) error {
	xTrain, yTrain, xTest, yTest, err := loadSplits(env.Data.ProcessedDir)
	if err != nil {
		return err
	}

	cli := mlflow.NewClient(env.Tracking.URL, env.Tracking.Token)
	experimentID, err := ensureExperiment(ctx, cli, env.Tracking.Experiment)
	if err != nil {
		return err
	}

	run, err := cli.CreateRun(ctx, experimentID, "train-"+uniuri.NewLen(6)) //nolint:gomnd
	if err != nil {
		return err
	}
	logrus.WithField("run", run.Info.RunID).
		WithField("experiment", env.Tracking.Experiment).
		Infoln("train: tracking run created")

	rmse, err := c.fitAndLog(ctx, env, cli, run, xTrain, yTrain, xTest, yTest)
	if err != nil {
		// close the tracking run so it never shows as RUNNING forever
		if endErr := cli.EndRun(ctx, run.Info.RunID, mlflow.RunStatusFailed); endErr != nil {
			logrus.WithError(endErr).Warnln("train: unable to mark the tracking run failed")
		}
		return err
	}
	if err := cli.EndRun(ctx, run.Info.RunID, mlflow.RunStatusFinished); err != nil {
		return err
	}

	logrus.WithField("run", run.Info.RunID).
		WithField(env.Registry.Metric, rmse).
		Infoln("train: tracking run completed")
	return nil
}

func (c *trainCommand) fitAndLog(
	ctx context.Context,
	env *config.EnvConfig,
	cli mlflow.Client,
	run *mlflow.Run,
	xTrain [][]float64,
	yTrain []float64,
	xTest *dataset.Table,
	yTest []float64,
) (float64, error) {
	params := forest.DefaultHyperparams()

	logrus.WithField("trees", params.NumTrees).Infoln("train: fitting model")
	model, err := forest.Fit(xTrain, yTrain, dataset.TrainFeatures, params)
	if err != nil {
		return 0, err
	}

	rmse, err := evaluate(model, xTest, yTest, evalYear)
	if err != nil {
		return 0, err
	}
	logrus.WithField("year", evalYear).
		WithField("rmse", rmse).
		Infoln("train: model evaluated")

	batch := []mlflow.Param{{Key: "model_type", Value: "RandomForestRegressor"}}
	for k, v := range params.Map() {
		batch = append(batch, mlflow.Param{Key: k, Value: v})
	}
	if err := cli.LogBatch(ctx, run.Info.RunID, batch, nil); err != nil {
		return 0, err
	}
	if err := cli.LogMetric(ctx, run.Info.RunID, env.Registry.Metric, rmse, 0); err != nil {
		return 0, err
	}

	artifact, err := forest.Marshal(model)
	if err != nil {
		return 0, err
	}
	path := env.Registry.ArtifactPath + "/" + env.Registry.ArtifactFile
	if err := cli.UploadArtifact(ctx, run.Info.ArtifactURI, path, artifact); err != nil {
		return 0, err
	}
	return rmse, nil
}

// evaluate scores the model on the test rows from a single release
// year, the same slice the original experiment reports.
func evaluate(model *forest.Forest, xTest *dataset.Table, yTest []float64, year float64) (float64, error) {
	years, err := xTest.Column(dataset.ColReleaseYear)
	if err != nil {
		return 0, err
	}
	var keep []int
	for i, y := range years {
		if y == year {
			keep = append(keep, i)
		}
	}
	if len(keep) == 0 {
		return 0, fmt.Errorf("train: no test rows for year %.0f", year)
	}

	features, err := xTest.FilterRows(keep).Matrix(dataset.TrainFeatures...)
	if err != nil {
		return 0, err
	}
	preds, err := model.PredictBatch(features)
	if err != nil {
		return 0, err
	}
	truth := make([]float64, len(keep))
	for i, j := range keep {
		truth[i] = yTest[j]
	}
	return forest.RMSE(preds, truth), nil
}

func loadSplits(dir string) (xTrain [][]float64, yTrain []float64, xTest *dataset.Table, yTest []float64, err error) {
	xTrainTable, err := dataset.ReadFile(filepath.Join(dir, dataset.FileXTrain))
	if err != nil {
		return nil, nil, nil, nil, err
	}
	yTrainTable, err := dataset.ReadFile(filepath.Join(dir, dataset.FileYTrain))
	if err != nil {
		return nil, nil, nil, nil, err
	}
	xTest, err = dataset.ReadFile(filepath.Join(dir, dataset.FileXTest))
	if err != nil {
		return nil, nil, nil, nil, err
	}
	yTestTable, err := dataset.ReadFile(filepath.Join(dir, dataset.FileYTest))
	if err != nil {
		return nil, nil, nil, nil, err
	}

	if xTrain, err = xTrainTable.Matrix(dataset.TrainFeatures...); err != nil {
		return nil, nil, nil, nil, err
	}
	if yTrain, err = yTrainTable.Column(dataset.ColCompletionist); err != nil {
		return nil, nil, nil, nil, err
	}
	if yTest, err = yTestTable.Column(dataset.ColCompletionist); err != nil {
		return nil, nil, nil, nil, err
	}
	return xTrain, yTrain, xTest, yTest, nil
}

func ensureExperiment(ctx context.Context, cli mlflow.Client, name string) (string, error) {
	experiment, err := cli.ExperimentByName(ctx, name)
	if err == nil {
		return experiment.ExperimentID, nil
	}
	if !mlflow.IsNotFound(err) {
		return "", err
	}
	return cli.CreateExperiment(ctx, name)
}

// Register the train command.
func Register(app *kingpin.Application) {
	c := new(trainCommand)

	cmd := app.Command("train", "trains the model and logs the run to the tracking server").
		Action(c.run)
	cmd.Flag("envfile", "load the environment variable file").
		Default("").
		StringVar(&c.envFile)
}
