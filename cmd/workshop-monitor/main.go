package main

import (
	"context"

	"workshop-monitor/cmd/workshop-monitor/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
