package browser

// surfaceSelectors lists CSS candidates for each interaction point on
// the remote generation surface. Every lookup tries the candidates in
// order, so the page surviving a markup change only needs one entry to
// still match.
type surfaceSelectors struct {
	// loginPrompts match elements that only render for signed-out
	// visitors.
	loginPrompts []string

	// composers match the prompt input, either a textarea or a
	// contenteditable region.
	composers []string

	// fileInputs match the hidden upload input used for reference
	// images.
	fileInputs []string

	// attachButtons match the button that reveals the upload input
	// when it is not mounted up front.
	attachButtons []string

	// sendButtons match the prompt submit button.
	sendButtons []string

	// busyIndicators match elements present only while a response is
	// being generated.
	busyIndicators []string

	// resultImages match generated output images inside the
	// conversation transcript.
	resultImages []string

	// newChatButtons match the control that starts a fresh
	// conversation.
	newChatButtons []string
}

var chatSurface = surfaceSelectors{
	loginPrompts: []string{
		`[data-testid="login-button"]`,
		`[data-testid="welcome-login-button"]`,
		`button[data-testid="mobile-login-button"]`,
		`a[href*="/auth/login"]`,
	},
	composers: []string{
		`#prompt-textarea`,
		`div[contenteditable="true"].ProseMirror`,
		`textarea[data-testid="prompt-textarea"]`,
		`textarea[placeholder]`,
	},
	fileInputs: []string{
		`input[type="file"]`,
	},
	attachButtons: []string{
		`button[data-testid="composer-attach-button"]`,
		`button[aria-label*="Attach"]`,
		`button[aria-label*="附加"]`,
	},
	sendButtons: []string{
		`button[data-testid="send-button"]`,
		`button[data-testid="composer-send-button"]`,
		`button[aria-label*="Send"]`,
		`button[aria-label*="发送"]`,
	},
	busyIndicators: []string{
		`button[data-testid="stop-button"]`,
		`button[aria-label*="Stop"]`,
		`.result-streaming`,
	},
	resultImages: []string{
		`div[data-message-author-role="assistant"] img[src*="oaiusercontent"]`,
		`div[data-message-author-role="assistant"] img[src^="blob:"]`,
		`div[data-message-author-role="assistant"] img[alt]`,
	},
	newChatButtons: []string{
		`a[data-testid="create-new-chat-button"]`,
		`button[data-testid="new-chat-button"]`,
		`a[href="/"]`,
	},
}
