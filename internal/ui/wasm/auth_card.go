//go:build js && wasm

package wasm

import (
	"context"
	"syscall/js"

	"github.com/Its-donkey/compass-auth/internal/ui/forms"
	"github.com/Its-donkey/compass-auth/internal/ui/model"
	"github.com/Its-donkey/compass-auth/internal/ui/state"
)

var textFields = []string{
	model.FieldEmail,
	model.FieldPassword,
	model.FieldNickname,
	model.FieldPasswordConfirm,
}

var allFields = append(append([]string(nil), textFields...), model.FieldAgreeTerms)

// authCard keeps the server rendered auth markup in step with the form store.
// The DOM is patched in place so focus and caret position survive updates.
type authCard struct {
	doc      js.Value
	root     js.Value
	store    *state.AuthFormStore
	ctrl     *forms.AuthController
	handlers []js.Func
}

func bindAuthCard(doc, root js.Value, ctrl *forms.AuthController) *authCard {
	card := &authCard{
		doc:   doc,
		root:  root,
		store: ctrl.Store(),
		ctrl:  ctrl,
	}

	if mode, ok := model.ParseAuthMode(root.Get("dataset").Get("mode").String()); ok {
		card.store.SetMode(mode)
	}

	forEachNode(root.Call("querySelectorAll", "[data-mode]"), func(tab js.Value) {
		card.on(tab, "click", func(this js.Value, _ []js.Value) any {
			if mode, ok := model.ParseAuthMode(this.Get("dataset").Get("mode").String()); ok {
				card.store.SetMode(mode)
			}
			return nil
		})
	})

	for _, name := range textFields {
		field := name
		card.on(card.input(field), "input", func(this js.Value, _ []js.Value) any {
			_ = card.store.SetField(field, this.Get("value").String())
			return nil
		})
	}
	card.on(card.input(model.FieldAgreeTerms), "change", func(this js.Value, _ []js.Value) any {
		_ = card.store.SetChecked(model.FieldAgreeTerms, this.Get("checked").Bool())
		return nil
	})

	card.on(doc.Call("getElementById", "auth-form"), "submit", func(_ js.Value, args []js.Value) any {
		if len(args) > 0 {
			args[0].Call("preventDefault")
		}
		go ctrl.Submit(context.Background())
		return nil
	})

	forEachNode(root.Call("querySelectorAll", "[data-provider]"), func(btn js.Value) {
		card.on(btn, "click", func(this js.Value, _ []js.Value) any {
			provider := this.Get("dataset").Get("provider").String()
			if err := ctrl.SocialLogin(provider); err != nil {
				js.Global().Get("console").Call("warn", err.Error())
			}
			return nil
		})
	})

	card.store.Subscribe(card.apply)
	card.apply(card.store.Snapshot())
	return card
}

func (c *authCard) on(node js.Value, event string, handler func(js.Value, []js.Value) any) {
	if !node.Truthy() {
		return
	}
	fn := js.FuncOf(handler)
	node.Call("addEventListener", event, fn)
	c.handlers = append(c.handlers, fn)
}

func (c *authCard) input(name string) js.Value {
	return c.doc.Call("getElementById", "auth-"+name)
}

func (c *authCard) apply(snap model.AuthFormState) {
	signup := snap.Mode == model.ModeSignup
	c.root.Get("dataset").Set("mode", snap.Mode.String())

	forEachNode(c.root.Call("querySelectorAll", "[data-mode]"), func(tab js.Value) {
		active := tab.Get("dataset").Get("mode").String() == snap.Mode.String()
		tab.Get("classList").Call("toggle", "active", active)
		tab.Call("setAttribute", "aria-selected", boolAttr(active))
	})
	forEachNode(c.root.Call("querySelectorAll", ".signup-only"), func(section js.Value) {
		section.Set("hidden", !signup)
	})

	for _, name := range textFields {
		el := c.input(name)
		if !el.Truthy() {
			continue
		}
		if want := fieldValue(snap.Fields, name); el.Get("value").String() != want {
			el.Set("value", want)
		}
	}
	if box := c.input(model.FieldAgreeTerms); box.Truthy() && box.Get("checked").Bool() != snap.Fields.AgreeTerms {
		box.Set("checked", snap.Fields.AgreeTerms)
	}
	if pw := c.input(model.FieldPassword); pw.Truthy() {
		autocomplete := "current-password"
		if signup {
			autocomplete = "new-password"
		}
		pw.Call("setAttribute", "autocomplete", autocomplete)
	}

	for _, name := range allFields {
		msg, hasErr := snap.Errors[name]
		if el := c.doc.Call("getElementById", "auth-"+name+"-error"); el.Truthy() {
			el.Set("textContent", msg)
			el.Set("hidden", !hasErr)
		}
		if input := c.input(name); input.Truthy() {
			if hasErr {
				input.Call("setAttribute", "aria-invalid", "true")
			} else {
				input.Call("removeAttribute", "aria-invalid")
			}
		}
	}

	if submit := c.doc.Call("getElementById", "auth-submit"); submit.Truthy() {
		submit.Set("disabled", snap.Busy)
		label := "Log in"
		switch {
		case snap.Busy:
			label = "Please wait…"
		case signup:
			label = "Create account"
		}
		submit.Set("textContent", label)
	}
}

func fieldValue(fields model.AuthFields, name string) string {
	switch name {
	case model.FieldEmail:
		return fields.Email
	case model.FieldPassword:
		return fields.Password
	case model.FieldNickname:
		return fields.Nickname
	case model.FieldPasswordConfirm:
		return fields.PasswordConfirm
	default:
		return ""
	}
}

func boolAttr(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func forEachNode(list js.Value, fn func(js.Value)) {
	if !list.Truthy() {
		return
	}
	length := list.Get("length").Int()
	for i := 0; i < length; i++ {
		fn(list.Index(i))
	}
}
