// Package extract recovers the intended artifact from raw language-model output.
//
// Models are asked to wrap code in markdown fences but do not always comply,
// so every function here is total: malformed or missing fences degrade to a
// best-effort result instead of an error.
//
//	body := extract.Extract(raw, extract.KindHTML)
//	body, fellBack := extract.ExtractReport(raw, extract.KindSQL)
//
// Extraction order:
//  1. the first non-blank block opened by a fence naming the kind ("```html"),
//     searched before any fence pairing so a stray fence in prose cannot hide it
//  2. the first non-blank fenced block of any kind
//  3. "" when the text has fences but every block is blank
//  4. the raw text, trimmed, only when the text has no fence at all
package extract
