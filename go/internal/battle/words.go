package battle

import (
	"math/rand/v2"
	"strings"
)

// wordsList is the practice vocabulary the passages are built from.
var wordsList = []string{
	"olma", "nok", "uzum", "shaftoli", "gilos", "qovun", "tarvuz", "banan",
	"kitob", "qalam", "daftar", "stol", "stul", "deraza", "eshik", "kalit",
	"uy", "xona", "oshxona", "hammom", "yotoqxona", "bog'", "hovli", "ko'cha",
	"oy", "quyosh", "yulduz", "bulut", "yomg'ir", "qor", "shamol", "issiq",
	"suv", "choy", "qahva", "non", "guruch", "makaron", "go'sht", "baliq",
	"bola", "qiz", "ona", "ota", "aka", "opa", "uka", "singil",
	"telefon", "kompyuter", "televizor", "muzlatgich", "dasturlash", "texnologiya",
	"internet", "sahifa", "tarmoq", "xavfsizlik", "tizim", "ma'lumot", "aloqa",
}

// GenerateWords returns a space-joined passage of count random words.
func GenerateWords(count int) string {
	words := make([]string, count)
	for i := range words {
		words[i] = wordsList[rand.IntN(len(wordsList))]
	}
	return strings.Join(words, " ")
}

// passageWordCount maps a difficulty label to the race passage length.
func passageWordCount(difficulty string) int {
	switch difficulty {
	case "easy":
		return 20
	case "hard":
		return 50
	default: // "normal" and anything unrecognized
		return 35
	}
}

// GeneratePassage builds the immutable race passage for a new room.
func GeneratePassage(difficulty string) string {
	return GenerateWords(passageWordCount(difficulty))
}
