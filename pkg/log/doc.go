/*
Package log provides structured logging for ilagent using zerolog.

# Usage

	import "github.com/ilert/ilagent/pkg/log"

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	log.Logger.Info().Msg("ilagent starting")

Every long-running subsystem takes a zerolog.Logger at construction time
and attaches its own component field before using it:

	log := log.Logger.With().Str("component", "dispatch").Logger()
	log.Warn().Str("event_id", id).Msg("delivery failed, will retry next tick")

Verbosity maps the CLI's repeated -v flag onto a Level via
LevelForVerbosity: no flags warns only, -v is info, -vv is debug, -vvv
and above is trace.

# Output

JSONOutput selects between newline-delimited JSON (production,
piped to a log collector) and zerolog's ConsoleWriter (development,
human-readable with a timestamp prefix). Both write to Output, which
defaults to os.Stdout when nil.

# Do / Don't

  - Use .Err(err) for error values rather than formatting them into
    the message string.
  - Attach context with .With().Str(...) on the logger passed into a
    component, not by concatenating it into the message.
  - Don't log api keys or event payload bodies at Info level; they
    belong at Debug at most.
*/
package log
