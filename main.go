package main

import (
	"github.com/itu-mlops/playtime-pipeline/command"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	command.Command()
}
