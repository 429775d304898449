package bot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/UKPLab/aacl2022-TexPrax/internal/category"
	"github.com/UKPLab/aacl2022-TexPrax/internal/chat"
	"github.com/UKPLab/aacl2022-TexPrax/internal/citation"
	"github.com/UKPLab/aacl2022-TexPrax/internal/repository"
	"github.com/UKPLab/aacl2022-TexPrax/internal/tracking"
)

const (
	messageGreeting       = "Hello! I am here to record your messages. If you want me to record, please click either ✔️/❌ for yes/no."
	messageStay           = "Okay, I will stay!"
	messageLeave          = "Okay, I will leave now!"
	messageNotUnderstood  = "I did not quite understand what you said, so I assume I should not record."
	messageConsentTimeout = "I did not get a confirmation to record, so I will leave now."
	messageClassifyFailed = "Sorry, I could not classify this message. Please try again later."
	messageStoreFailed    = "Sorry, something went wrong while storing this message."
	messageNoMessage      = "There is no recorded message to update."
	messageNotForwarded   = "Message was marked as other and will not be sent to the teamboard."

	messagePromptFormat = "I detected the following sentence type: %s. Is that correct? \n" +
		"If it is correct, please type :yes, otherwise one of the following commands to correct it: %s"
)

func classificationPrompt(predicted category.Category) string {
	commands := make([]string, 0, 3)
	for _, c := range category.Others(predicted) {
		commands = append(commands, ":"+c.Command())
	}
	return fmt.Sprintf(messagePromptFormat, predicted, strings.Join(commands, ", "))
}

func promptAffordances(predicted category.Category) []string {
	symbols := []string{chat.SymbolAccept}
	for _, c := range category.Others(predicted) {
		symbols = append(symbols, c.ReactionKey())
	}
	return symbols
}

func categoryNoun(c category.Category) string {
	switch c {
	case category.Problem:
		return "problem"
	case category.Cause:
		return "cause"
	case category.Solution:
		return "solution"
	default:
		return "message"
	}
}

func submissionResult(c category.Category, err error) string {
	noun := categoryNoun(c)
	if err == nil {
		return fmt.Sprintf("Message was stored as a %s to the teamboard!", noun)
	}
	return fmt.Sprintf("Message could not be stored as a %s to the teamboard!%s", noun, failureHint(err))
}

func failureHint(err error) string {
	switch {
	case errors.Is(err, citation.ErrNotQuote):
		return " Please reply to the problem message."
	case errors.Is(err, citation.ErrEmptySubject):
		return " The quoted problem is empty."
	case errors.Is(err, tracking.ErrProblemNotFound):
		return " The quoted problem was not found."
	case errors.Is(err, repository.ErrNoMessage):
		return " There is no recorded message."
	default:
		return ""
	}
}
