/*
Package world gives UI test steps a small browser vocabulary: open a page,
find elements, read their text, click, wait for something to show up and
drag the mouse.

A Session owns one browser, started on first use by a Dialer. Every Browser
built on the Session shares it:

	sess := world.NewSession(remote.Dial, world.DefaultCapabilities())
	defer sess.Close()

	b, err := world.New(ctx, sess, world.Config{BaseURL: "http://localhost:8080"})
	if err != nil {
		return err
	}
	if err := b.OpenURL(ctx, "/login"); err != nil {
		return err
	}
	if err := b.ClickOn(ctx, `button:contains("Sign in")`); err != nil {
		return err
	}
	if err := b.WaitForText(ctx, "Welcome", world.Timeout(5*time.Second)); err != nil {
		return err
	}

Selectors may be written as CSS, as CSS with the extensions understood by
package cssxpath (such as :contains), or as XPath. Lookups try the three
dialects in that order and use the first one the selector parses in.

Dialers for a WebDriver server, for Chrome's DevTools protocol and for an
in-process HTML document live in packages remote, devtools and static.
*/
package world
