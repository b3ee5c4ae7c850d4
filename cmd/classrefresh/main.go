package main

import (
	"classrefresh/cmd/classrefresh/commands"
	"classrefresh/lib/serviceutil"
)

func main() {
	ctx, cancel := serviceutil.SignalContext()
	defer cancel()
	commands.ExecuteContext(ctx)
}
