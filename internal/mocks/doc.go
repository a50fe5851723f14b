// Package mocks provides shared mock implementations for testing.
//
// # Usage
//
//	import "discovery/internal/mocks"
//
//	func TestSomething(t *testing.T) {
//	    client := mocks.NewMockLLMClient()
//	    client.RespondWith("What does a typical week look like for your team?")
//	    // Use client in test...
//	}
//
// # Available Mocks
//
//   - MockLLMClient: Mock for the llm.Client interface
package mocks
