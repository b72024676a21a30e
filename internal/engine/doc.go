// Package engine implements the marketplace instruction processor.
//
// A Processor decodes one instruction, validates it against the registry
// held in the state slot, and produces an ordered list of effects (value
// transfers, asset transfers, account creation). Effects are applied through
// the host's Capabilities in order; the first failure aborts the instruction
// and the slot data is left untouched.
//
// Processing flow:
//
//  1. instruction.Decode parses the payload (InvalidInstructionData on error)
//  2. the handler checks the account list, signers and derived addresses
//  3. the registry is decoded from the state slot and mutated in memory
//  4. effects are applied through Capabilities (TransferError on failure)
//  5. the registry is validated, re-encoded and written to the slot
//
// The engine holds no locks and performs no rollback. The host serializes
// instructions per slot and wraps each one in a store transaction, so a
// failed instruction leaves neither balances nor the registry changed.
//
// Draws use the registry's persisted seed, so the same log of instructions
// always reproduces the same allocations.
package engine
