// Package memory implements the bot's two-tier memory.
//
// Short-term memory is a bounded, recency-ordered dialogue buffer per
// user; long-term memory is a capacity-bounded store of user facts
// queried by vector similarity. The admission pipeline decides which
// messages become durable facts; the assembler fuses both tiers into
// a single bounded context string for the completion model.
//
// Architecture:
//   - ShortTermStore: volatile keyed list (Redis in production)
//   - LongTermStore: vector storage (pgvector in production, chromem locally)
//   - Embedder: text-to-vector conversion (OpenAI embeddings)
//   - Judge: model-backed importance call, consulted only when the
//     cheap lexical rules are inconclusive
//   - Admission: rules + judge + capacity check, run off the reply path
//   - Assembler: context build on the critical path, recording detached
//
// Memory failures never reach the user: a tier that is unavailable for
// a turn contributes an empty block and the conversation proceeds.
package memory
