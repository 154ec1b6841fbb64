package rewind

// Cache key naming conventions for checkpoint data. All keys carry a
// configurable prefix (default "rewind:") so one cache instance can
// serve several applications.

// checkpointKey returns the key holding a checkpoint's sealed record:
// {prefix}ckpt:{thread}:{namespace}:{id}
func (s *Store) checkpointKey(thread, namespace, id string) string {
	return s.cfg.KeyPrefix + "ckpt:" + thread + ":" + namespace + ":" + id
}

// checkpointKeyPattern matches every checkpoint key of a thread across
// all namespaces.
func (s *Store) checkpointKeyPattern(thread string) string {
	return s.cfg.KeyPrefix + "ckpt:" + thread + ":*"
}

// threadKey returns the Hash key indexing one (thread, namespace)
// stream: {prefix}thread:{thread}:{namespace}. Fields are checkpoint
// ids, values small index entries.
func (s *Store) threadKey(thread, namespace string) string {
	return s.cfg.KeyPrefix + "thread:" + thread + ":" + namespace
}

// threadKeyPattern matches every thread index Hash of a thread.
func (s *Store) threadKeyPattern(thread string) string {
	return s.cfg.KeyPrefix + "thread:" + thread + ":*"
}
