// Package storage owns the on-disk output tree.
//
// Every image is written to a hidden temp file in its album directory,
// fsynced and renamed over the final <index>.<ext> path, so a reader never
// observes a partial file at a final path. Re-running a collection simply
// replaces the files. Directory creation is idempotent and safe to call
// from concurrent workers.
//
//	mgr, err := storage.NewManager(root, 0755, 0644)
//	n, err := mgr.Save(ctx, rec.TargetPath(root, "png"), func(w io.Writer) error {
//		return png.Encode(w, img)
//	})
package storage
