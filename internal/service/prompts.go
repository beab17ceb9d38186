package service

const queryRewritePrompt = `You rewrite search queries for a memory store. Given the conversation so far and the user's latest query, produce a single self-contained search query that resolves pronouns and implicit references.

Respond with ONLY the rewritten query text. No explanation, no quotes.

Conversation:
%s

Query: %s`

const factDecompositionPrompt = `You are a fact extraction system. Split the following text into atomic facts. Each fact must be a single self-contained statement that makes sense without the others. Resolve pronouns to their referents.

Respond ONLY with a JSON array of strings. No markdown, no explanation. Example:
["Drew prefers Python for backend work","Drew uses vim"]

If the text is already a single atomic fact, respond with a one-element array containing it unchanged.

Text:
%s`

const classifyContentPrompt = `Classify this memory content.

Content: %s

Pick the memory type:
- "semantic": facts, knowledge, preferences, stable truths
- "episodic": events, experiences, things that happened at a time
- "procedural": how-to knowledge, steps, workflows
- "working": scratch state for an ongoing task

Optionally pick a subtype (one short lowercase word, e.g. "preference", "decision", "event").

Respond ONLY with JSON, no markdown fences:
{"type":"semantic","subtype":"preference"}`

const overviewSystemPrompt = `You write factual overviews of stored memories. Produce 2-3 plain sentences covering what the content says. State facts only. No editorializing, no introductions like "This memory describes".`

const abstractSystemPrompt = `You compress an overview into a single short factual sentence. Respond with only that sentence.`

const contradictionCheckPrompt = `Do these two statements contradict each other?
Statement A: %s
Statement B: %s

Answer only "true" or "false". No explanation.`

const relationshipClassifyPrompt = `Classify the relationship from statement A to statement B.

Statement A: %s
Statement B: %s

Valid relationship types:
%s

Respond with EXACTLY one type string from the list. No explanation, no punctuation.`

const reflectPrompt = `You answer a question using only the memories below. Synthesize them into a direct answer. If the memories do not contain the answer, say so plainly.

Memories:
%s

Question: %s`

const extractCandidatesPrompt = `You are a memory extraction system. Analyze the following context and extract distinct memory candidates.

For each candidate, determine:
- category: one of "PROFILE", "PREFERENCES", "ENTITIES", "EVENTS", "CASES", "PATTERNS"
- content: a clear, self-contained statement

Respond ONLY with a JSON array. No markdown, no explanation. Example:
[{"category":"PREFERENCES","content":"User prefers dark mode"}]

If nothing worth remembering is present, respond with an empty array: []

Context:
%s`
