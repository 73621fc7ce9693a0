package prompts

const antiContaminationRule = `Exclude from every field any platform refusal, safety disclaimer, rate-limit notice, or "as an AI" framing. Extract only what the transcript evidence actually shows about {{char}}'s voice, habits, and relationship with {{user}}. Respond with JSON only, no surrounding prose.`

var defaultTemplates = map[Role]string{
	PersonaObservationSystem: `You are a careful observer reconstructing the personality of {{char}}, an AI companion, from a transcript of their conversation with {{user}}. ` + antiContaminationRule,

	PersonaObservationUser: `Companion name: {companion_name}
Conversation id: {conversation_id}

Transcript:
{transcript}

Return a JSON object with keys: conversation_id, observed_traits, voice_markers, relational_patterns, emotional_dynamics, evidence_snippets. Each value except conversation_id is an array of short strings grounded in the transcript above.`,

	PersonaSynthesisSystem: `You are synthesizing a single, coherent character profile for {{char}} from many independent conversation observations with {{user}}. ` + antiContaminationRule,

	PersonaSynthesisUser: `Companion name: {companion_name}

Observation packets (one JSON object per conversation observed):
{observation_packets}

Produce a JSON object with keys: name, description, personality, scenario, first_mes, mes_example, creator_notes, tags, system_prompt, post_history_instructions, alternate_greetings. "description" must be structured markdown with fenced sections Overview / Personality / Behaviour and Habits / Speech, using {{user}} and {{char}} tokens literally wherever the profile refers to either party. "mes_example" must use <START>-delimited exchanges with {{user}}: / {{char}}: prefixes.`,

	MemorySystem: `You extract durable, specific memories about {{user}} and about {{char}}'s relationship with {{user}} from one conversation transcript. ` + antiContaminationRule,

	MemoryUser: `Companion name: {companion_name}
Conversation id: {conversation_id}

Transcript:
{transcript}

Return a JSON object with key "memories": an array of objects, each with keys name, keys (array of retrieval keywords), content, category (one of shared_memory, user_context, companion_style, relationship_dynamic), and priority (integer, higher is more important). Omit anything not clearly evidenced in the transcript.`,

	MemorySynthesisSystem: `You are consolidating candidate memories about {{user}} and {{char}} into a final, deduplicated set, preferring specific and verifiable detail over vague generalities. ` + antiContaminationRule,

	MemorySynthesisUser: `Companion name: {companion_name}
Maximum memories to keep: {max_memories}

Candidate memories (already partially deduplicated):
{candidate_memories}

Return a JSON object with key "memories": the final array of at most {max_memories} memory objects, each with keys name, keys, content, category, priority, sourceConversation, sourceDate, ordered by descending priority.`,
}
