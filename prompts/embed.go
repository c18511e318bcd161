// Package prompts embeds the recruiter-side prompt documents.
package prompts

import _ "embed"

// RecruiterPrompt is the full system prompt for the SUT. Its
// "MANDATORY FIELDS TO EXTRACT" section is also the default mandatory
// field source for analysis.
//
//go:embed recruiter/recruiter_v1.md
var RecruiterPrompt string

// IntroPrompt is used for the SUT's very first message only.
//
//go:embed recruiter/intro.md
var IntroPrompt string

// DialogController is prepended to every SUT system prompt.
//
//go:embed recruiter/controller.md
var DialogController string

// RecruiterFallback is used when no recruiter prompt file can be read.
const RecruiterFallback = "You are a recruiter assistant. Ask questions to understand the hiring needs and gather information progressively. Do not provide complete job descriptions immediately."
