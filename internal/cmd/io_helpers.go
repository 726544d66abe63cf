package cmd

import (
	"context"
	"io"
	"os"

	"github.com/salmonumbrella/anaconda-cli/internal/iocontext"
	"github.com/salmonumbrella/anaconda-cli/internal/output"
)

func stdoutFromContext(ctx context.Context) io.Writer {
	return iocontext.StdoutOrDefault(ctx, os.Stdout)
}

func stderrFromContext(ctx context.Context) io.Writer {
	return iocontext.StderrOrDefault(ctx, os.Stderr)
}

func stdinFromContext(ctx context.Context) io.Reader {
	return iocontext.StdinOrDefault(ctx, os.Stdin)
}

func printerForContext(ctx context.Context) *output.Printer {
	return output.NewPrinter(stdoutFromContext(ctx), output.FormatFromContext(ctx))
}
