// Package main provides a control CLI for a running player instance.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	"github.com/neobelieve/tonhub/internal/domain/device"
	"github.com/neobelieve/tonhub/internal/domain/track"
	"github.com/neobelieve/tonhub/internal/infra/peer"
)

var (
	app  = kingpin.New("playerctl", "Control a running tonhub player")
	host = app.Flag("host", "Player address (host:port)").Default("localhost:5050").String()

	// status command
	statusCmd = app.Command("status", "Show playback status")

	// transport commands
	playPauseCmd = app.Command("play-pause", "Toggle play/pause").Alias("toggle")
	nextCmd      = app.Command("next", "Skip to the next track")
	previousCmd  = app.Command("previous", "Go back to the previous track").Alias("prev")

	// play command
	playCmd   = app.Command("play", "Play a track")
	playURL   = playCmd.Arg("url", "Media path or source URL").Required().String()
	playTitle = playCmd.Flag("title", "Track title").String()

	// queue command
	queueCmd = app.Command("queue", "Show the player's queue")

	// enqueue command
	enqueueCmd   = app.Command("enqueue", "Add a track to the queue")
	enqueueURL   = enqueueCmd.Arg("url", "Media path").Required().String()
	enqueueTitle = enqueueCmd.Flag("title", "Track title").String()

	// volume command
	volumeCmd = app.Command("volume", "Set the output volume")
	volumeVal = volumeCmd.Arg("volume", "Volume (0-100)").Required().Int()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := peer.New(peer.Config{Timeout: 5 * time.Second})
	ctx := context.Background()

	d, err := client.Check(ctx, *host)
	if err != nil {
		fatal("no player at %s: %v", *host, err)
	}

	switch command {
	case statusCmd.FullCommand():
		status(ctx, client, d)
	case playPauseCmd.FullCommand():
		sendAction(ctx, client, d, peer.ActionPlayPause)
	case nextCmd.FullCommand():
		sendAction(ctx, client, d, peer.ActionNext)
	case previousCmd.FullCommand():
		sendAction(ctx, client, d, peer.ActionPrevious)
	case playCmd.FullCommand():
		play(ctx, client, d)
	case queueCmd.FullCommand():
		showQueue(ctx, client, d)
	case enqueueCmd.FullCommand():
		enqueue(ctx, client, d)
	case volumeCmd.FullCommand():
		setVolume(ctx, client, d)
	}
}

func status(ctx context.Context, client *peer.Client, d device.Device) {
	snap, err := client.Sync(ctx, d)
	if err != nil {
		fatal("sync failed: %v", err)
	}

	fmt.Printf("Device: %s (%s)\n", d.Name, d.Type)
	fmt.Printf("Status: %s\n", snap.Status)
	if snap.TrackID != "" {
		fmt.Printf("Track: %s\n", snap.TrackID)
		fmt.Printf("Position: %s / %s\n", formatDuration(snap.Position), formatDuration(snap.Duration))
	}
}

func sendAction(ctx context.Context, client *peer.Client, d device.Device, action peer.Action) {
	if err := client.SendAction(ctx, d, action); err != nil {
		fatal("command failed: %v", err)
	}
	fmt.Println("ok")
}

func play(ctx context.Context, client *peer.Client, d device.Device) {
	t := track.Track{Title: *playTitle}
	if len(*playURL) > 0 && (*playURL)[0] == '/' {
		t.MediaURL = *playURL
	} else {
		t.SourceURL = *playURL
	}

	if err := client.Play(ctx, d, t); err != nil {
		fatal("play failed: %v", err)
	}
	fmt.Println("ok")
}

func showQueue(ctx context.Context, client *peer.Client, d device.Device) {
	tracks, err := client.Playlist(ctx, d)
	if err != nil {
		fatal("failed to fetch queue: %v", err)
	}

	if len(tracks) == 0 {
		fmt.Println("Queue is empty")
		return
	}
	for i, t := range tracks {
		fmt.Printf("%3d. %s\n", i+1, t.Title)
	}
}

func enqueue(ctx context.Context, client *peer.Client, d device.Device) {
	t := track.Track{Title: *enqueueTitle, MediaURL: *enqueueURL}
	t.EnsureID()
	if err := client.AddToPlaylist(ctx, d, t); err != nil {
		fatal("enqueue failed: %v", err)
	}
	fmt.Println("ok")
}

func setVolume(ctx context.Context, client *peer.Client, d device.Device) {
	if err := client.SetVolume(ctx, d, *volumeVal); err != nil {
		fatal("volume failed: %v", err)
	}
	fmt.Println("ok")
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d", m, s)
}

func fatal(format string, args ...any) {
	fmt.Printf("Error: "+format+"\n", args...)
	os.Exit(1)
}
