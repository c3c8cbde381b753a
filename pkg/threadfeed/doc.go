// Package threadfeed is the data-access core of a social-feed service:
// publishing threads with media attachments through a two-phase
// upload-then-commit protocol, serving cursor-paginated reverse
// chronological feeds, and substring search over user profiles.
//
// The package is storage-agnostic. Persistence goes through the
// Repository interface (in-memory and PostgreSQL implementations ship
// under repo/), and attachment bytes go through the BlobStore interface
// (in-memory, filesystem and S3 implementations under storage/). A Service is
// assembled with functional options:
//
//	svc, err := threadfeed.New(
//		threadfeed.WithRepository(memory.New()),
//		threadfeed.WithBlobStore(memorystorage.New()),
//	)
//
// Publishing is all-or-nothing: every attachment upload must succeed
// before the thread record is committed, and a reply's commit increments
// the parent's reply counter in the same atomic write.
package threadfeed
