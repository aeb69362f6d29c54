/*
Package cli provides command-line interface utilities for Gutenberg.

The cli package includes output formatters, a batch progress reporter, and
signal handling helpers used by the gutenberg command.

Output Formatting:

Command results can be printed as plain text or JSON:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, statusReport); err != nil {
		return err
	}

Progress Reporting:

Batch renders report per-document progress:

	progress := cli.NewProgressReporter(os.Stderr)
	progress.Start(int64(len(documents)))
	for i, doc := range documents {
		// render doc
		progress.Update(int64(i + 1))
	}
	progress.Finish()

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx := cli.SetupSignalHandler()
*/
package cli
