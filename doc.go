// Package gitstore is a versioned, content-addressed filesystem layered on
// the git object model.
//
// A GitStore wraps a bare git repository. Every mutation — a single write, a
// batch of writes, a disk sync, a cross-branch merge — produces a new
// immutable commit and advances a named branch pointer under compare-and-swap.
// Reads go through Fs, an immutable snapshot of one commit's tree; Fs values
// are cheap to copy and safe to share across goroutines.
//
// # Opening a store
//
//	store, err := gitstore.Open("/var/lib/myapp/data.git", gitstore.OpenOptions{
//		Create: true,
//		Branch: "main",
//	})
//
// # Reading and writing
//
//	fs, err := store.Fs(nil) // nil resolves HEAD's branch
//	data, err := fs.Read("config/app.json")
//
//	fs2, err := fs.Write("config/app.json", []byte(`{"on":true}`), gitstore.WriteOptions{})
//	// fs2 is the new snapshot; fs still observes the old tree.
//
// # Batching
//
//	b := fs.Batch()
//	b.Write("a.txt", []byte("a"))
//	b.Remove("b.txt")
//	fs3, report, err := b.Commit("update a and b")
//
// # Concurrency
//
// GitStore serializes object-store access with an in-process mutex and ref
// mutation across processes with an advisory file lock. Commits are
// optimistic: a write against a stale Fs fails with ErrStaleSnapshot and the
// caller retries against a fresh snapshot (see RetryWrite).
package gitstore
