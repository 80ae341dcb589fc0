/*
Package session serializes access to conversation sessions.

A Manager holds one reference-counted mutex per (conversation, bot) pair, so
messages of the same conversation are processed one at a time while distinct
conversations run concurrently. An optional DistributedLocker extends the
guarantee across replicas. A Sweeper deactivates expired sessions on a cron schedule.
*/
package session
