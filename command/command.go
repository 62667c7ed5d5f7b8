package command

import (
	"os"

	"github.com/itu-mlops/playtime-pipeline/command/download"
	"github.com/itu-mlops/playtime-pipeline/command/prepare"
	"github.com/itu-mlops/playtime-pipeline/command/promote"
	"github.com/itu-mlops/playtime-pipeline/command/score"
	"github.com/itu-mlops/playtime-pipeline/command/serve"
	"github.com/itu-mlops/playtime-pipeline/command/train"

	"gopkg.in/alecthomas/kingpin.v2"
)

// program version
var version = "v0.1.0"

// Command parses the command line arguments and then executes a subcommand program.
func Command() {
	app := kingpin.New("playtime", "playtime prediction pipeline")
	download.Register(app)
	prepare.Register(app)
	train.Register(app)
	promote.Register(app)
	serve.Register(app)
	score.Register(app)

	kingpin.Version(version)
	kingpin.MustParse(app.Parse(os.Args[1:]))
}
