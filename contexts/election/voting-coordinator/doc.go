// Package votingcoordinator implements ballot casting and results
// publication inside the election context.
//
// The module owns candidate tallies, per-voter ballot status and the
// published flag. Every mutation goes through ElectionStore.WithinTx so the
// published check, the tally increment and the hasVoted flip commit together,
// and casting is additionally serialized per voter id. Events are written to
// the outbox in the same transaction and relayed by workers.
package votingcoordinator
