// Package output provides structured output handling for the microfactory CLI.
//
// Every command writes through a Printer, which switches between JSON and
// human-readable text based on the --json flag and TTY detection:
//
//	printer := output.NewPrinter(cmd.OutOrStdout(), isJSONMode(cmd), useColor(cmd))
//	printer.Success(map[string]any{"message": "published", "path": path})
//	printer.Error(err)
//
// # Exit Codes
//
//	output.ExitSuccess           // 0: every step succeeded
//	output.ExitPublishFailure    // 1: at least one store write failed
//	output.ExitGenerationFailure // 2: the language model could not produce output
//	output.ExitUserError         // 3: bad flags or configuration
//
// Errors built with NewUserError, NewPublishError and NewGenerationError
// carry their code through errors.As, so main only has to call GetExitCode.
package output
