package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ncecere/groq_whisper/internal/cli"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, cli.FormatError(err))
		os.Exit(1)
	}
}
