package domain

import "testing"

func TestCategoryMappingTotal(t *testing.T) {
	t.Parallel()

	for _, typ := range AllTypes() {
		cat, ok := CategoryOf(typ)
		if !ok {
			t.Fatalf("CategoryOf(%q) not mapped", typ)
		}
		if !AllowAll().Allows(cat) {
			t.Fatalf("category %q of %q is unknown to PreferenceFlags", cat, typ)
		}
	}
	if _, ok := CategoryOf("promo_blast"); ok {
		t.Fatalf("CategoryOf accepted an unmapped type")
	}
}

func TestKnownPlatform(t *testing.T) {
	t.Parallel()

	for _, p := range []Platform{PlatformIOS, PlatformAndroid} {
		if !KnownPlatform(p) {
			t.Fatalf("KnownPlatform(%q) = false", p)
		}
	}
	for _, p := range []Platform{"", "web", "IOS"} {
		if KnownPlatform(p) {
			t.Fatalf("KnownPlatform(%q) = true", p)
		}
	}
}

func TestPreferenceFlags(t *testing.T) {
	t.Parallel()

	f := PreferenceFlags{Invites: true, Wallet: true}
	if !f.Allows(CategoryInvites) || !f.Allows(CategoryWallet) {
		t.Fatalf("set flags should allow their categories")
	}
	if f.Allows(CategoryReminders) || f.Allows(CategoryGeneric) {
		t.Fatalf("unset flags should deny")
	}
	if f.Allows("mystery") {
		t.Fatalf("unknown category must be denied")
	}
	if got := f.EnabledCount(); got != 2 {
		t.Fatalf("EnabledCount = %d, want 2", got)
	}
	if got := AllowAll().EnabledCount(); got != 5 {
		t.Fatalf("AllowAll EnabledCount = %d, want 5", got)
	}
}
