package main

import (
	"context"

	"membership_sync/cmd/listsync/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
