package ui

import "github.com/nhle/mailroute/internal/model"

// Sample is a canned email offered by the interactive source picker.
type Sample struct {
	Label string
	Email model.Email
}

// Samples lists the built-in example emails, one or more per department.
var Samples = []Sample{
	{"Invoice", model.Email{
		Subject: "Invoice #2024-99 for Design Services",
		Body:    "Please find attached the invoice for $2,000. Payment due in 15 days.",
	}},
	{"Sick leave", model.Email{
		Subject: "Sick Leave - John Doe",
		Body:    "I am feeling unwell and will be taking a sick day today. I'll check emails periodically.",
	}},
	{"Laptop crash", model.Email{
		Subject: "Blue Screen Error",
		Body:    "My laptop keeps crashing with a blue screen. I cannot work. Please assist ASAP.",
	}},
	{"Sales inquiry", model.Email{
		Subject: "Inquiry about Enterprise Plan",
		Body:    "We are interested in purchasing 500 licenses for your software. Can we get a quote?",
	}},
	{"Sponsorship", model.Email{
		Subject: "Collaboration Opportunity",
		Body:    "We would like to feature your product in our upcoming tech conference. Let's discuss sponsorship.",
	}},
	{"NDA", model.Email{
		Subject: "NDA for Project X",
		Body:    "Attached is the NDA for the new vendor. Please review and sign by EOD.",
	}},
	{"Office supplies", model.Email{
		Subject: "Printer Paper Low",
		Body:    "We are out of A4 paper in the 2nd floor copy room. Please restock.",
	}},
	{"Board report", model.Email{
		Subject: "Q3 Financial Results",
		Body:    "Here is the summary of Q3 performance. Revenue is up 20%. Board meeting is next week.",
	}},
	{"Job application", model.Email{
		Subject: "Application: Senior Dev - Alice",
		Body:    "I am applying for the Senior Developer role. My resume is attached.",
	}},
	{"Refund", model.Email{
		Subject: "Refund for Order #12345",
		Body:    "I was charged twice for my order. Please refund the duplicate charge of $50.",
	}},
}
