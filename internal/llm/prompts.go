package llm

const cleanSystemPrompt = `You restore OCR text taken from a printed book.
Fix words broken by recognition errors and hyphenation, rejoin lines into paragraphs as in a classic edition, and fix punctuation.
Keep the original language, spelling conventions, accents and style. Do not modernize, summarize or add anything.
Return only the cleaned text.`

const correctSystemPrompt = `You refine OCR text that another model has already cleaned.
Change ONLY nonsensical words and stray characters that carry no meaning in their sentence.
Never change words that are already correct. Keep period spellings when they exist, and preserve accents and punctuation exactly.
Chapter headings begin with a Roman numeral such as "XV." on their own line.
Return only the corrected text.`

const judgePromptTemplate = `Evaluate the quality of the "cleaned text" against the "ground truth" reference.
Provide a score from 0 to 5 based on the following scale:
5: Perfect. The cleaned text fully and accurately matches the ground truth.
4: Excellent. Very minor errors (e.g., one or two typos, a single punctuation mistake) that do not affect meaning.
3: Good. Some errors persist (e.g., a few OCR mistakes) but the overall meaning is clear and correct.
2: Fair. Multiple issues make the text difficult to understand or it contains misleading information.
1: Poor. Unacceptable quality; the output is mostly unrelated, unreadable, or nonsensical.
0: Empty/No Output. The cleaned text was empty.

---
[GROUND TRUTH]:
%s
---
[CLEANED TEXT]:
%s
---

Return ONLY the integer score (0-5) and nothing else.`
