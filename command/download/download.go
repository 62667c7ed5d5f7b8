package download

import (
	"context"

	"github.com/itu-mlops/playtime-pipeline/command/config"
	"github.com/itu-mlops/playtime-pipeline/internal/kaggle"
	"github.com/itu-mlops/playtime-pipeline/internal/ledger"
	"github.com/itu-mlops/playtime-pipeline/store/database"
	"github.com/itu-mlops/playtime-pipeline/types"

	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"
)

type downloadCommand struct {
	envFile string
}

func (c *downloadCommand) run(*kingpin.ParseContext) error {
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
		logrus.WithError(err).Fatalln("download: unable to open the run ledger")
	}
	rec, err := ledger.Begin(ctx, database.ProvideStageRunStore(db), types.StageDownload)
	if err != nil {
		logrus.WithError(err).Fatalln("download: unable to record the stage run")
	}

	err = c.download(ctx, &env)
	rec.Done(ctx, err)
	if err != nil {
		logrus.WithError(err).Errorln("download: stage failed")
	}
	return err
}

func (c *downloadCommand) download(ctx context.Context, env *config.EnvConfig) error {
	cli := kaggle.NewClient(
		env.Kaggle.Endpoint,
		env.Kaggle.CacheDir,
		env.Kaggle.Username,
		env.Kaggle.Key,
	)

	logrus.WithField("dataset", env.Kaggle.Dataset).
		Infoln("download: fetching dataset archive")
	dir, err := cli.DownloadDataset(ctx, env.Kaggle.Dataset)
	if err != nil {
		return err
	}

	if err := kaggle.CopyDir(dir, env.Data.RawDir); err != nil {
		return err
	}
	logrus.WithField("dir", env.Data.RawDir).
		Infoln("download: raw files copied")
	return nil
}

// Register the download command.
func Register(app *kingpin.Application) {
	c := new(downloadCommand)

	cmd := app.Command("download", "downloads the raw dataset into the data directory").
		Action(c.run)
	cmd.Flag("envfile", "load the environment variable file").
		Default("").
		StringVar(&c.envFile)
}
