// Package command implements the chat commands shared by every transport.
//
// A message whose first word starts with the command prefix ("!" by default)
// is a command; everything else is a prompt for the active agent. Commands
// reply with plain text and never start an agent process:
//
//	!status                   active provider and model
//	!use claude|codex|gemini  switch provider (also !claude, !codex, !gemini)
//	!models                   list models for the active provider
//	!model <index|name>       switch model
//	!stop                     stop the running request
//	!clear                    forget the active provider's session
//	!clear all                forget every provider's session
//	!history                  recent ledger entries for this conversation
//	!restart                  restart the operator
//	!help                     command list
package command
