package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

// EnvConfig stores the system configuration.
type EnvConfig struct {
	Debug bool `envconfig:"PLAYTIME_DEBUG"`
	Trace bool `envconfig:"PLAYTIME_TRACE"`

	Tracking struct {
		URL        string `envconfig:"PLAYTIME_TRACKING_URL" default:"http://localhost:5001"`
		Token      string `envconfig:"PLAYTIME_TRACKING_TOKEN"`
		Experiment string `envconfig:"PLAYTIME_EXPERIMENT_NAME" default:"playtime-prediction"`
	}

	Registry struct {
		ModelName    string `envconfig:"PLAYTIME_MODEL_NAME" default:"playtime-prediction-model"`
		Metric       string `envconfig:"PLAYTIME_PROMOTION_METRIC" default:"rmse_2021"`
		Stage        string `envconfig:"PLAYTIME_PROMOTION_STAGE" default:"Staging"`
		ArtifactPath string `envconfig:"PLAYTIME_MODEL_ARTIFACT_PATH" default:"random_forest_regressor"`
		ArtifactFile string `envconfig:"PLAYTIME_MODEL_ARTIFACT_FILE" default:"model.json"`
	}

	Kaggle struct {
		Endpoint string `envconfig:"PLAYTIME_KAGGLE_ENDPOINT" default:"https://www.kaggle.com"`
		Username string `envconfig:"KAGGLE_USERNAME"`
		Key      string `envconfig:"KAGGLE_KEY"`
		Dataset  string `envconfig:"PLAYTIME_KAGGLE_DATASET" default:"b4n4n4p0wer/how-long-to-beat-video-game-playtime-dataset"`
		CacheDir string `envconfig:"PLAYTIME_KAGGLE_CACHE" default:".cache/kaggle"`
	}

	Data struct {
		RawDir       string `envconfig:"PLAYTIME_DATA_RAW" default:"data/raw"`
		ProcessedDir string `envconfig:"PLAYTIME_DATA_PROCESSED" default:"data/processed"`
	}

	Server struct {
		Port string `envconfig:"PLAYTIME_HTTP_BIND" default:":5000"`
	}

	Database struct {
		Driver     string `envconfig:"PLAYTIME_DATABASE_DRIVER" default:"sqlite3"`
		Datasource string `envconfig:"PLAYTIME_DATABASE_DATASOURCE" default:"data/pipeline.db"`
	}
}

// legacy environment variables. the key is the legacy variable name,
// and the value is the new variable name.
var legacy = map[string]string{
	// "PLAYTIME_VARIABLE_OLD": "PLAYTIME_VARIABLE_NEW"
}

func FromEnviron() (EnvConfig, error) {
	// loop through legacy environment variable and, if set
	// rewrite to the new variable name.
	for k, v := range legacy {
		if s, ok := os.LookupEnv(k); ok {
			os.Setenv(v, s)
		}
	}

	var config EnvConfig
	err := envconfig.Process("", &config)
	if err != nil {
		return config, err
	}
	return config, nil
}

// LoadEnvFile loads environment variables from an optional file before
// the configuration is parsed.
func LoadEnvFile(file string) error {
	if file == "" {
		return nil
	}
	err := godotenv.Load(file)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// SetupLogger configures the global logrus logger from the loaded
// configuration.
func SetupLogger(c *EnvConfig) {
	if c.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if c.Trace {
		logrus.SetLevel(logrus.TraceLevel)
	}
}
