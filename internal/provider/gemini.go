// ABOUTME: Gemini CLI provider using --output-format stream-json
// ABOUTME: Assistant messages arrive as deltas, so fragments are concatenated by default

package provider

type gemini struct {
	base
}

func newGemini(opts Options) *gemini {
	return &gemini{base: newBase("gemini", opts, AggregateConcat)}
}

func (g *gemini) BuildCommand(prompt, model, sessionID string) []string {
	args := []string{
		g.path,
		"-p", prompt,
		"--output-format", "stream-json",
		"--yolo",
		"-m", model,
	}
	if sessionID != "" {
		args = append(args, "--resume", sessionID)
	}
	return args
}

func (g *gemini) BufferLimit() int { return longLineLimit }

func (g *gemini) Classify(rec Record) []Event {
	var events []Event
	switch rec.Type() {
	case "tool_use":
		events = append(events, Status(geminiToolStatus(rec.String("tool_name"), rec.Object("parameters"))))
	case "message":
		if rec.String("role") == "assistant" {
			if content := rec.String("content"); content != "" {
				events = append(events, Response(content))
			}
		}
	case "error":
		if msg := rec.String("message"); msg != "" {
			events = append(events, Error(msg), Status("Error: "+clip(msg, 40)))
		}
	case "init":
		if id := rec.String("session_id"); id != "" {
			events = append(events, Session(id))
		}
	}
	return events
}
