package main

import (
	"context"
	"wilma-backend/cmd/wilma-cli/commands"
	"wilma-backend/lib/telemetry"

	"github.com/joho/godotenv"
)

func main() {
	godotenv.Load()
	telemetry.SetupFromEnv(context.Background(), "wilma-cli")
	telemetry.InitSlog(true)
	commands.ExecuteContext(context.Background())
}
