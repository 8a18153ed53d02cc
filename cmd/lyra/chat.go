package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/lyralabs/lyra/pkg/agent"
)

func turnOpts(voiceMode bool) agent.TurnOptions {
	return agent.TurnOptions{VoiceMode: voiceMode}
}

func interactiveChat(eng *engine, voiceMode bool) {
	fmt.Println("Lyra is listening (Ctrl+C or \"exit\" to leave)")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "you: ",
		HistoryFile:     filepath.Join(os.TempDir(), ".lyra_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Printf("readline unavailable (%v), using plain input\n", err)
		simpleChat(eng, voiceMode)
		return
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nsleep well ✨")
				return
			}
			fmt.Printf("read error: %v\n", err)
			continue
		}
		if !handleChatLine(eng, line, voiceMode) {
			return
		}
	}
}

func simpleChat(eng *engine, voiceMode bool) {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("you: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				fmt.Println("\nsleep well ✨")
				return
			}
			fmt.Printf("read error: %v\n", err)
			continue
		}
		if !handleChatLine(eng, line, voiceMode) {
			return
		}
	}
}

// handleChatLine runs one turn; returns false when the session ends.
func handleChatLine(eng *engine, line string, voiceMode bool) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return true
	}
	if input == "exit" || input == "quit" {
		fmt.Println("sleep well ✨")
		return false
	}

	res, err := eng.orch.HandleTurn(context.Background(), input, turnOpts(voiceMode))
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return true
	}
	fmt.Printf("\n✨ %s\n\n", res.Reply)
	if len(res.Audio) > 0 {
		fmt.Printf("(synthesized %d bytes of speech)\n\n", len(res.Audio))
	}
	return true
}
