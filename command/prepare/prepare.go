package prepare

import (
	"context"
	"path/filepath"

	"github.com/itu-mlops/playtime-pipeline/command/config"
	"github.com/itu-mlops/playtime-pipeline/dataset"
	"github.com/itu-mlops/playtime-pipeline/internal/ledger"
	"github.com/itu-mlops/playtime-pipeline/store/database"
	"github.com/itu-mlops/playtime-pipeline/types"

	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"
)

type prepareCommand struct {
	envFile string
}

func (c *prepareCommand) run(*kingpin.ParseContext) error {
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
		logrus.WithError(err).Fatalln("prepare: unable to open the run ledger")
	}
	rec, err := ledger.Begin(ctx, database.ProvideStageRunStore(db), types.StagePrepare)
	if err != nil {
		logrus.WithError(err).Fatalln("prepare: unable to record the stage run")
	}

	err = c.prepare(&env)
	rec.Done(ctx, err)
	if err != nil {
		logrus.WithError(err).Errorln("prepare: stage failed")
	}
	return err
}

func (c *prepareCommand) prepare(env *config.EnvConfig) error {
	raw, err := dataset.ReadFile(filepath.Join(env.Data.RawDir, dataset.RawFile))
	if err != nil {
		return err
	}
	logrus.WithField("rows", raw.Len()).
		Infoln("prepare: loaded raw table")

	split, err := dataset.Prepare(raw)
	if err != nil {
		return err
	}
	if err := split.Save(env.Data.ProcessedDir); err != nil {
		return err
	}

	logrus.WithField("dir", env.Data.ProcessedDir).
		WithField("train", split.XTrain.Len()).
		WithField("test", split.XTest.Len()).
		Infoln("prepare: datasets saved")
	return nil
}

// Register the prepare command.
func Register(app *kingpin.Application) {
	c := new(prepareCommand)

	cmd := app.Command("prepare", "cleans the raw dataset and writes the train/test splits").
		Action(c.run)
	cmd.Flag("envfile", "load the environment variable file").
		Default("").
		StringVar(&c.envFile)
}
