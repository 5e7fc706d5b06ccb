package handlers

import (
	"encoding/json"
	"net/http"
)

// GreetingMessage is the fixed greeting returned by the root route.
const GreetingMessage = "Hello from Flask!!"

// Greeting is the JSON body of the root route.
type Greeting struct {
	Message string `json:"message"`
}

var greetingBody = mustMarshal(Greeting{Message: GreetingMessage})

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return append(b, '\n')
}

// RootHandler responds with the fixed JSON greeting.
func RootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(greetingBody)
}
