/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package cards

// DemoDeck is served when no card file exists yet.
func DemoDeck() Deck {
	return Deck{
		Categories: map[string][]Card{
			"1": {
				{Question: "How do you cook a proper borscht?", Instruction: "Describe the main steps"},
				{Question: "Name the five key ingredients of a Caesar salad", Instruction: "List the ingredients"},
			},
			"2": {
				{Question: "How is a Mojito made?", Instruction: "Describe the steps"},
				{Question: "What is a Manhattan cocktail?", Instruction: "Describe its build and method"},
			},
			"3": {
				{Question: "At what temperature should red wine be served?", Instruction: "Name the ideal temperature"},
				{Question: "What does the term sommelier mean?", Instruction: "Give a definition"},
			},
			"4": {
				{Question: "A guest complains the dish is cold. What do you do?", Instruction: "Describe your response"},
				{Question: "A guest asks to swap an ingredient because of an allergy", Instruction: "How do you handle it?"},
			},
			"5": {
				{Question: "How is a table set correctly?", Instruction: "Describe the main rules"},
				{Question: "In what order is cutlery served?", Instruction: "Explain the order"},
			},
			"6": {
				{Question: "How do you offer a guest an expensive wine?", Instruction: "Describe the sales technique"},
				{Question: "How do you raise the average check?", Instruction: "Name three ways"},
			},
		},
		Zones: Zones{
			Grams:       "Name the exact weight of this ingredient for the dish, in grams.",
			Description: "Give a vivid description of this dish or drink to whet the guest's appetite.",
			Allergy:     "Can this ingredient be left out of the dish without hurting the taste? Why?",
		},
	}
}
