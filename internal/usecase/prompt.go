package usecase

import (
	"fmt"
	"strconv"
	"strings"

	"triage-agent/internal/domain"
)

const (
	analysisTurnPrefix = "**Symptom Analysis:** "
	finalTurnPrefix    = "**Final Medical Assessment:**\n\n"
	notSpecified       = "Not specified"
)

// RecommendationSections are the headings every final assessment carries,
// in order.
var RecommendationSections = []string{
	"Triage Recommendation",
	"Detailed Reasoning",
	"Immediate Actions",
	"Red Flags",
	"Follow-up Plan",
	"Precautions",
}

// fallbackQuestions are asked in order when the model cannot produce a
// follow-up question.
var fallbackQuestions = []string{
	"Can you tell me more about your symptoms?",
	"How long have you been experiencing these symptoms?",
	"How severe would you rate these symptoms?",
	"Do you have any relevant medical history?",
	"Are you currently taking any medications?",
}

// fallbackQuestion picks by half the history length, clamped to the last
// question.
func fallbackQuestion(historyLen int) string {
	return fallbackQuestions[min(historyLen/2, len(fallbackQuestions)-1)]
}

func buildFollowUpPrompt(history []domain.Turn) string {
	return strings.Join([]string{
		"You are a caring and professional doctor conducting a patient consultation. " +
			"Your role is to ask natural, conversational follow-up questions to understand the patient's condition better.",
		"",
		"Guidelines:",
		"- Be empathetic and professional",
		"- Ask one clear question at a time",
		"- Base your questions on what the patient has already told you",
		"- Focus on gathering essential information: symptoms, duration, severity, medical history",
		"- Use natural, conversational language",
		"- Don't ask questions the patient has already answered",
		"",
		"Current conversation context:",
		domain.Transcript(history),
		"",
		"Based on this conversation, what would you like to ask the patient next? Ask only one question.",
	}, "\n")
}

func buildAnalysisPrompt(symptoms []string, medicalContext string) string {
	return strings.Join([]string{
		"As a medical professional, analyze the patient's symptoms in the context of available medical information.",
		"",
		"Patient Symptoms: " + strings.Join(symptoms, ", "),
		"Medical Context: " + medicalContext,
		"",
		"Provide a brief analysis of what these symptoms might indicate and any concerning patterns.",
	}, "\n")
}

func analysisFallback(symptoms []string) string {
	return fmt.Sprintf("Based on your symptoms (%s), I need to gather more information to provide a proper assessment.",
		strings.Join(symptoms, ", "))
}

func buildRecommendationPrompt(history []domain.Turn, p domain.PatientProfile, medicalContext string) string {
	sections := make([]string, 0, len(RecommendationSections))
	for i, name := range RecommendationSections {
		sections = append(sections, fmt.Sprintf("%d. **%s**: %s", i+1, name, sectionHints[i]))
	}

	return strings.Join([]string{
		"Based on the complete patient consultation and medical knowledge, provide a comprehensive triage recommendation.",
		"",
		"Patient Consultation:",
		domain.Transcript(history),
		"",
		profileBlock(p),
		"",
		"Medical Context:",
		medicalContext,
		"",
		"Please provide:",
		strings.Join(sections, "\n"),
		"",
		"Be thorough, professional, and prioritize patient safety.",
	}, "\n")
}

var sectionHints = []string{
	"(self-care, primary care, urgent care, or emergency)",
	"Explain why this recommendation is appropriate",
	"What the patient should do right now",
	"Warning signs to watch for",
	"When and how to follow up",
	"Any specific precautions to take",
}

func profileBlock(p domain.PatientProfile) string {
	age := notSpecified
	if p.Age != nil {
		age = strconv.Itoa(*p.Age)
	}
	gender := notSpecified
	if p.Gender != "" && p.Gender != domain.GenderUnspecified {
		gender = string(p.Gender)
	}
	symptoms := notSpecified
	if p.HasSymptoms() {
		symptoms = strings.Join(p.Symptoms, ", ")
	}

	return strings.Join([]string{
		"Patient Information:",
		"- Age: " + age,
		"- Gender: " + gender,
		"- Symptoms: " + symptoms,
		"- Duration: " + orNotSpecified(p.Duration),
		"- Severity: " + orNotSpecified(string(p.Severity)),
	}, "\n")
}

func orNotSpecified(s string) string {
	if strings.TrimSpace(s) == "" {
		return notSpecified
	}
	return s
}

// degradedRecommendation stands in for the final assessment when the model is
// unavailable. It keeps every section heading and errs toward seeking care.
var degradedRecommendation = strings.Join([]string{
	"I'm sorry, I was unable to generate a complete assessment right now. Please use the guidance below and consult a healthcare professional.",
	"",
	"1. **Triage Recommendation**: primary care. If your symptoms are severe or rapidly worsening, seek urgent care or emergency services.",
	"2. **Detailed Reasoning**: An automated assessment could not be completed, so a clinician should review your symptoms directly.",
	"3. **Immediate Actions**: Rest, stay hydrated, and contact your doctor or a nurse line to describe your symptoms.",
	"4. **Red Flags**: Chest pain, difficulty breathing, confusion, fainting, severe bleeding or sudden weakness require emergency care immediately.",
	"5. **Follow-up Plan**: Arrange an appointment within the next few days, sooner if symptoms change.",
	"6. **Precautions**: Avoid strenuous activity and do not start new medications without professional advice.",
}, "\n")
