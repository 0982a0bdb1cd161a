// Command exportctl inspects and prunes the export history kept by the media
// editor server.
//
// Usage:
//
//	exportctl <command> [arguments]
//
// Commands:
//
//	list [limit]      Show the most recent exports with status and progress.
//
//	show <id>         Show one export including its error message.
//
//	prune <age> [-y]  Delete done, failed and cancelled exports last updated
//	                  more than age ago. Queued and running jobs are kept.
//	                  Without -y the command asks for confirmation and
//	                  refuses to run when stdin is not a terminal.
//
// Environment:
//
//	DATABASE_DIR - Path to database directory (default: /database)
package main
