package config

type WorkerKeyStruct struct {
	BlobCleanupQueue string
}

var WorkerKey = &WorkerKeyStruct{
	BlobCleanupQueue: "blob_cleanup_queue",
}
