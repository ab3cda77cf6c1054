package login

import (
	"fmt"
	"net/mail"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/shopfront/internal/model"
	"github.com/nhle/shopfront/internal/theme"
)

// SubmitMsg is dispatched when the user submits the form.
type SubmitMsg struct {
	Register bool
	Name     string
	Email    string
	Password string
	Role     model.Role
}

// CancelMsg is dispatched when the user aborts the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	register bool
	name     string
	email    string
	password string
	role     model.Role
}

// Model is the Bubble Tea model for the sign-in / sign-up form.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	done   bool
	err    string
	width  int
	height int
}

// New creates a new login form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{role: model.RoleBuyer},
		width:  width,
		height: height,
	}
}

// Init returns the form's initial command.
func (m Model) Init() tea.Cmd {
	if m.form == nil {
		return nil
	}
	return m.form.Init()
}

// Start shows the sign-in form, keeping the last email.
func (m *Model) Start() tea.Cmd {
	return m.start(false)
}

// StartRegister shows the sign-up form.
func (m *Model) StartRegister() tea.Cmd {
	return m.start(true)
}

func (m *Model) start(register bool) tea.Cmd {
	m.fb.register = register
	m.fb.password = ""
	m.done = false
	if register {
		m.form = m.buildRegisterForm()
	} else {
		m.form = m.buildLoginForm()
	}
	return m.form.Init()
}

// SetError shows a failure from the last submit.
func (m *Model) SetError(err error) {
	if err == nil {
		m.err = ""
		return
	}
	m.err = err.Error()
}

// Update handles messages for the form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil || m.done {
		return m, nil
	}

	if k, ok := msg.(tea.KeyMsg); ok && k.String() == "ctrl+r" {
		return m, m.start(!m.fb.register)
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.done = true
		fb := *m.fb
		return m, func() tea.Msg {
			return SubmitMsg{
				Register: fb.register,
				Name:     strings.TrimSpace(fb.name),
				Email:    strings.TrimSpace(fb.email),
				Password: fb.password,
				Role:     fb.role,
			}
		}
	case huh.StateAborted:
		m.done = true
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleText := "Sign in"
	hint := "ctrl+r create an account"
	if m.fb.register {
		titleText = "Create account"
		hint = "ctrl+r sign in instead"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	parts := []string{titleStyle.Render(titleText)}
	if m.err != "" {
		parts = append(parts, theme.ErrorStyle.Render(m.err))
	}
	parts = append(parts, m.form.View(), theme.HelpStyle.Render(hint))

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildLoginForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(m.credentialFields()...),
	).WithWidth(m.formWidth())
}

func (m *Model) buildRegisterForm() *huh.Form {
	fields := []huh.Field{
		huh.NewInput().
			Title("Name").
			Value(&m.fb.name).
			Validate(validateRequired("Name")),
	}
	fields = append(fields, m.credentialFields()...)
	fields = append(fields,
		huh.NewSelect[model.Role]().
			Title("Account type").
			Options(
				huh.NewOption("Buyer", model.RoleBuyer),
				huh.NewOption("Seller", model.RoleSeller),
			).
			Value(&m.fb.role),
	)

	return huh.NewForm(
		huh.NewGroup(fields...),
	).WithWidth(m.formWidth())
}

func (m *Model) credentialFields() []huh.Field {
	return []huh.Field{
		huh.NewInput().
			Title("Email").
			Placeholder("you@example.com").
			Value(&m.fb.email).
			Validate(validateEmail),
		huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&m.fb.password).
			Validate(validateRequired("Password")),
	}
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 80 {
		w = 80
	}
	return w
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("Email is required")
	}
	if _, err := mail.ParseAddress(s); err != nil {
		return fmt.Errorf("invalid email address")
	}
	return nil
}
