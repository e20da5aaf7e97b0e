package styles

// DefaultTheme is the baseline dark palette for the opsdesk TUI.
var DefaultTheme = Theme{
	Name:        "default",
	BorderStyle: "rounded",
	Base: BaseColors{
		Background: "234",
		Foreground: "252",
		Muted:      "245",
		Accent:     "75",
		Border:     "240",
	},
	Message: MessageColors{
		Inbound:   "147",
		Outbound:  "81",
		Automated: "214",
	},
	Status: StatusColors{
		Active:   "41",
		Awaiting: "220",
		Resolved: "243",
	},
	Chrome: ChromeColors{
		Header:       "111",
		Footer:       "110",
		Breadcrumb:   "109",
		SelectedItem: "75",
		Scrollbar:    "246",
	},
	Borders: BorderColors{
		ActivePane:   "75",
		InactivePane: "240",
		Divider:      "238",
	},
}
