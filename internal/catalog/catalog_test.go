package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

const ownerAddr = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

func testService() *Service {
	return NewService(NewMemoryStore(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func mustCategory(t *testing.T, svc *Service, name string) *Category {
	t.Helper()
	c, err := svc.CreateCategory(context.Background(), name, "")
	if err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}
	return c
}

func mustNFT(t *testing.T, svc *Service, categoryID string) *NFT {
	t.Helper()
	n, err := svc.ListNFT(context.Background(), ListNFTRequest{
		CategoryID:   categoryID,
		Name:         "Sunset #42",
		Price:        "150.00",
		Network:      "ethereum",
		OwnerAddress: ownerAddr,
	})
	if err != nil {
		t.Fatalf("ListNFT failed: %v", err)
	}
	return n
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Digital Art", "digital-art"},
		{"  Pixel & Voxel  ", "pixel-voxel"},
		{"3D", "3d"},
		{"---", ""},
	}
	for _, tc := range tests {
		if got := Slugify(tc.in); got != tc.want {
			t.Errorf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCreateCategory(t *testing.T) {
	svc := testService()
	c := mustCategory(t, svc, "Digital Art")

	if c.Slug != "digital-art" {
		t.Errorf("slug = %q, want digital-art", c.Slug)
	}

	// Duplicate slug rejected.
	if _, err := svc.CreateCategory(context.Background(), "Digital Art", ""); !errors.Is(err, ErrSlugTaken) {
		t.Errorf("expected ErrSlugTaken, got %v", err)
	}
}

func TestListNFTRejectsInternalImageURL(t *testing.T) {
	svc := testService()
	cat := mustCategory(t, svc, "Art")

	_, err := svc.ListNFT(context.Background(), ListNFTRequest{
		CategoryID:   cat.ID,
		Name:         "X",
		Price:        "1",
		OwnerAddress: ownerAddr,
		ImageURL:     "http://localhost:8080/img.png",
	})
	if err == nil {
		t.Error("expected error for internal image URL")
	}
}

func TestListNFTRequiresCategory(t *testing.T) {
	svc := testService()
	_, err := svc.ListNFT(context.Background(), ListNFTRequest{
		CategoryID:   "cat_missing",
		Name:         "X",
		Price:        "1",
		OwnerAddress: ownerAddr,
	})
	if !errors.Is(err, ErrCategoryNotFound) {
		t.Errorf("expected ErrCategoryNotFound, got %v", err)
	}
}

func TestNFTLifecycle(t *testing.T) {
	svc := testService()
	cat := mustCategory(t, svc, "Art")
	n := mustNFT(t, svc, cat.ID)
	ctx := context.Background()

	if n.Status != NFTAvailable {
		t.Fatalf("status = %s, want available", n.Status)
	}

	if err := svc.Reserve(ctx, n.ID); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	// A second reservation must lose the race.
	if err := svc.Reserve(ctx, n.ID); !errors.Is(err, ErrNFTNotAvailable) {
		t.Errorf("double reserve: expected ErrNFTNotAvailable, got %v", err)
	}

	if err := svc.Relist(ctx, n.ID); err != nil {
		t.Fatalf("Relist failed: %v", err)
	}
	got, _ := svc.GetNFT(ctx, n.ID)
	if got.Status != NFTAvailable {
		t.Errorf("status after relist = %s, want available", got.Status)
	}

	if err := svc.Reserve(ctx, n.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.MarkSold(ctx, n.ID); err != nil {
		t.Fatalf("MarkSold failed: %v", err)
	}
	got, _ = svc.GetNFT(ctx, n.ID)
	if got.Status != NFTSold {
		t.Errorf("status = %s, want sold", got.Status)
	}

	// Sold NFTs stay sold.
	if err := svc.Relist(ctx, n.ID); !errors.Is(err, ErrNFTNotAvailable) {
		t.Errorf("relist sold: expected ErrNFTNotAvailable, got %v", err)
	}
}

func TestListNFTsFilter(t *testing.T) {
	svc := testService()
	ctx := context.Background()
	art := mustCategory(t, svc, "Art")
	music := mustCategory(t, svc, "Music")

	a := mustNFT(t, svc, art.ID)
	mustNFT(t, svc, music.ID)

	if err := svc.Reserve(ctx, a.ID); err != nil {
		t.Fatal(err)
	}

	all, err := svc.ListNFTs(ctx, NFTFilter{})
	if err != nil || len(all) != 2 {
		t.Fatalf("all = %d (%v), want 2", len(all), err)
	}

	available, err := svc.ListNFTs(ctx, NFTFilter{Status: NFTAvailable})
	if err != nil || len(available) != 1 {
		t.Fatalf("available = %d (%v), want 1", len(available), err)
	}

	inArt, err := svc.ListNFTs(ctx, NFTFilter{CategoryID: art.ID})
	if err != nil || len(inArt) != 1 || inArt[0].ID != a.ID {
		t.Fatalf("category filter failed: %v %v", inArt, err)
	}
}
