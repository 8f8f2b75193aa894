// Package cli implements the neurostore command-line client on top of
// cobra. Every subcommand maps to one FileService call; the service is
// opened after flags are parsed so --server, --token and --db apply.
//
// Commands
//
//	upload <path>...          chunk, plan and send only the new chunks
//	download <ref>            write a version to -o or stdout
//	versions <ref>            list the versions of a file
//	info <ref>                show a file with its access list
//	ls [--shared|--tracked]   list own, shared or locally tracked files
//	search <query>            find own files by name
//	rename <ref> <name>       rename a file
//	rm <ref>...               delete file references
//	share <ref>               replace the access list
//	ping                      check the server
//
// A ref is a path uploaded from this machine or a server file id.
package cli
