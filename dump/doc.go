/*
Package dump provides I/O operations for collected states of deployed
contracts.

A dump consists of contract states and their storage items. It allows to
execute scripts against a "live" state pulled from some network or produced
by a previous run. Dumps are stored in the file system using human-readable
encoding, see Creator for the format.
*/
package dump
