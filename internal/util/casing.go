package util

import (
	"strings"
	"unicode"
)

// SplitWords splits an identifier into its words. Word boundaries are
// non-alphanumeric runes, lower-to-upper transitions and the end of an
// acronym ("HTTPServer" splits into "HTTP" and "Server"). Digits stay with
// the word they follow.
func SplitWords(name string) []string {
	runes := []rune(name)
	var words []string
	start := -1
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			if start >= 0 {
				words = append(words, string(runes[start:i]))
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
			continue
		}
		prev := runes[i-1]
		if unicode.IsUpper(r) {
			lowerBefore := unicode.IsLower(prev) || unicode.IsDigit(prev)
			acronymEnd := unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if lowerBefore || acronymEnd {
				words = append(words, string(runes[start:i]))
				start = i
			}
		}
	}
	if start >= 0 {
		words = append(words, string(runes[start:]))
	}
	return words
}

func replaceWordCasing(s string, fn func(string) string) string {
	switch s {
	case "id":
		return "ID"
	case "ids":
		return "IDs"
	case "uuid":
		return "UUID"
	case "uuids":
		return "UUIDs"
	case "url":
		return "URL"
	case "urls":
		return "URLs"
	}
	return fn(s)
}

func upperFirst(s string) string {
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func EnsurePascalCase(s string) string {
	words := SplitWords(s)
	for i, word := range words {
		words[i] = replaceWordCasing(strings.ToLower(word), upperFirst)
	}
	return strings.Join(words, "")
}

func EnsureCamelCase(s string) string {
	words := SplitWords(s)
	for i, word := range words {
		word = strings.ToLower(word)
		if i == 0 {
			words[i] = word
			continue
		}
		words[i] = replaceWordCasing(word, upperFirst)
	}
	return strings.Join(words, "")
}

// EnsureDelimitedLowerCase lower-cases every word of s and joins them with
// delim.
func EnsureDelimitedLowerCase(s string, delim string) string {
	words := SplitWords(s)
	for i, word := range words {
		words[i] = strings.ToLower(word)
	}
	return strings.Join(words, delim)
}

func EnsureSnakeCase(s string) string {
	return EnsureDelimitedLowerCase(s, "_")
}
