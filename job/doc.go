// Package job defines the persisted job record, its state history,
// invocation payloads and the store interface.
//
// # Job Record
//
// A [Job] carries an encoded [Invocation], free-form parameters, an
// append-only state history and an optional expiry. [Job.AppendState] is
// the only way state is changed, so StateName always mirrors the last
// history entry.
//
// # Invocations
//
// Invocation payloads are encoded with a [Codec] (JSON by default,
// MessagePack optionally) and decoded lazily. A payload that cannot be
// decoded, or names a handler this process does not know, yields
// [Data] with LoadErr set instead of failing the read.
//
// # Definitions and Registry
//
//	var SendEmail = job.NewDefinition("mail", "Send",
//	    func(ctx context.Context, in EmailInput) error { ... })
//
//	job.RegisterDefinition(registry, SendEmail)
package job
