// Package insights turns calendar events into short AI-written summaries and
// cross-meeting analyses.
//
// A Generator wraps one Backend (Gemini or any OpenAI-compatible chat
// completions endpoint such as Groq). Every call returns a Result; when the
// backend is missing, rate limited, slow or failing, the Result carries a
// deterministic fallback text built from the events themselves and its Source
// is "fallback" instead of "ai".
package insights
