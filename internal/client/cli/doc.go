// Package cli provides the interactive groupsync chat client.
//
// It wires configuration, the chosen store backend, the optional wallet
// and the sync engine, then runs a REPL. Engine events are printed as they
// arrive, so messages from other members show up between prompts.
//
// Commands:
//   - groups                list your groups
//   - create                create a group (interactive)
//   - join <id>             join a group, asking for its password if needed
//   - select <id|#>         open a group by id or list position
//   - send <text>           post to the open group; plain text works too
//   - members [id|#]        list members of the open or given group
//   - back                  close the open group
//   - status                show user, backend, connectivity and wallet
//   - logout                sign out and leave
//   - exit | quit           leave
package cli
