// Command windsentry is the pipeline CLI. The run subcommand hosts the
// long-running daemon; the remaining subcommands inspect and manage the
// queue database directly.
package main
