package servertest

import "github.com/studyarena/pkarena/internal/domains/entities"

type bankQuestion struct {
	question      entities.Question
	correctOption string
}

// Canned question bank for local battles. Correct options never leave
// the server before an answer is submitted.
var questionBank = []bankQuestion{
	{
		question: entities.Question{
			Id:      "q-http-status",
			Content: "Which HTTP status code means Too Many Requests?",
			Options: []entities.Option{
				{Id: "a", Label: "A", Content: "408"},
				{Id: "b", Label: "B", Content: "429"},
				{Id: "c", Label: "C", Content: "502"},
				{Id: "d", Label: "D", Content: "504"},
			},
			Difficulty: 1,
		},
		correctOption: "b",
	},
	{
		question: entities.Question{
			Id:      "q-goroutine",
			Content: "What starts a goroutine in Go?",
			Options: []entities.Option{
				{Id: "a", Label: "A", Content: "the async keyword"},
				{Id: "b", Label: "B", Content: "the spawn builtin"},
				{Id: "c", Label: "C", Content: "the go statement"},
				{Id: "d", Label: "D", Content: "Thread.start"},
			},
			Difficulty: 1,
		},
		correctOption: "c",
	},
	{
		question: entities.Question{
			Id:      "q-tcp-handshake",
			Content: "How many segments make up a TCP connection handshake?",
			Options: []entities.Option{
				{Id: "a", Label: "A", Content: "2"},
				{Id: "b", Label: "B", Content: "3"},
				{Id: "c", Label: "C", Content: "4"},
				{Id: "d", Label: "D", Content: "5"},
			},
			Difficulty: 2,
		},
		correctOption: "b",
	},
	{
		question: entities.Question{
			Id:      "q-json-number",
			Content: "What Go type does encoding/json decode a JSON number into by default?",
			Options: []entities.Option{
				{Id: "a", Label: "A", Content: "int"},
				{Id: "b", Label: "B", Content: "float32"},
				{Id: "c", Label: "C", Content: "float64"},
				{Id: "d", Label: "D", Content: "json.Number"},
			},
			Difficulty: 2,
		},
		correctOption: "c",
	},
	{
		question: entities.Question{
			Id:      "q-websocket-close",
			Content: "Which close code signals a normal WebSocket closure?",
			Options: []entities.Option{
				{Id: "a", Label: "A", Content: "1000"},
				{Id: "b", Label: "B", Content: "1001"},
				{Id: "c", Label: "C", Content: "1006"},
				{Id: "d", Label: "D", Content: "1011"},
			},
			Difficulty: 2,
		},
		correctOption: "a",
	},
	{
		question: entities.Question{
			Id:      "q-index-scan",
			Content: "Which SQL construct most commonly prevents an index from being used?",
			Options: []entities.Option{
				{Id: "a", Label: "A", Content: "WHERE on the leading column"},
				{Id: "b", Label: "B", Content: "a function applied to the indexed column"},
				{Id: "c", Label: "C", Content: "ORDER BY the indexed column"},
				{Id: "d", Label: "D", Content: "LIMIT"},
			},
			Difficulty: 3,
		},
		correctOption: "b",
	},
}

func pickQuestions(n int) []bankQuestion {
	if n <= 0 || n > len(questionBank) {
		n = len(questionBank)
	}
	picked := make([]bankQuestion, n)
	copy(picked, questionBank[:n])
	return picked
}
