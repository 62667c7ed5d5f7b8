package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/itu-mlops/playtime-pipeline/command/config"
	"github.com/itu-mlops/playtime-pipeline/forest"
	"github.com/itu-mlops/playtime-pipeline/internal/ledger"
	"github.com/itu-mlops/playtime-pipeline/metric"
	"github.com/itu-mlops/playtime-pipeline/mlflow"
	"github.com/itu-mlops/playtime-pipeline/store/database"
	"github.com/itu-mlops/playtime-pipeline/types"

	"github.com/drone/signal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/alecthomas/kingpin.v2"
)

// empty context.
var nocontext = context.Background()

type serveCommand struct {
	envFile string
}

func (c *serveCommand) run(*kingpin.ParseContext) error {
	if err := config.LoadEnvFile(c.envFile); err != nil {
		return err
	}
	env, err := config.FromEnviron()
	if err != nil {
		return err
	}
	config.SetupLogger(&env)

	ctx, cancel := context.WithCancel(nocontext)
	defer cancel()
	// listen for termination signals to gracefully shutdown the server.
	ctx = signal.WithContextFunc(ctx, func() {
		println("serve: received signal, terminating process")
		cancel()
	})

	db, err := database.ProvideDatabase(env.Database.Driver, env.Database.Datasource)
	if err != nil {
		logrus.WithError(err).Fatalln("serve: unable to open the run ledger")
	}
	rec, err := ledger.Begin(ctx, database.ProvideStageRunStore(db), types.StageServe)
	if err != nil {
		logrus.WithError(err).Fatalln("serve: unable to record the stage run")
	}

	err = c.serve(ctx, &env)
	rec.Done(context.Background(), err)
	if err != nil {
		logrus.WithError(err).Errorln("serve: shutting down the server")
	}
	return err
}

func (c *serveCommand) serve(ctx context.Context, env *config.EnvConfig) error {
	cli := mlflow.NewClient(env.Tracking.URL, env.Tracking.Token)

	modelURI := fmt.Sprintf("models:/%s/%s", env.Registry.ModelName, env.Registry.Stage)
	logrus.WithField("model", modelURI).
		Infoln("serve: loading model from registry")

	data, version, err := cli.ResolveStagedModel(ctx, env.Registry.ModelName, env.Registry.Stage, env.Registry.ArtifactFile)
	if err != nil {
		return err
	}
	model, err := forest.Unmarshal(data)
	if err != nil {
		return err
	}
	logrus.WithField("version", version.Version).
		WithField("trees", len(model.Trees)).
		Infoln("serve: model loaded")

	h := newHandler(model, env.Registry.ModelName, env.Registry.Stage, version.Version, metric.RegisterAll())

	server := &http.Server{
		Addr:              env.Server.Port,
		Handler:           h.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var g errgroup.Group
	g.Go(func() error {
		<-ctx.Done()
		return server.Shutdown(context.Background())
	})
	g.Go(func() error {
		logrus.WithField("addr", server.Addr).
			WithField("model", modelURI).
			Infoln("serve: starting the server")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	return g.Wait()
}

// Register the serve command.
func Register(app *kingpin.Application) {
	c := new(serveCommand)

	cmd := app.Command("serve", "serves the promoted model over http").
		Action(c.run)
	cmd.Flag("envfile", "load the environment variable file").
		Default("").
		StringVar(&c.envFile)
}
