package config

const (
	defaultMoviesRoot          = "/data/scratch/movies"
	defaultTVRoot              = "/data/scratch/tv-series"
	defaultTargetMoviesDir     = "/data/archive/movies"
	defaultTargetTVDir         = "/data/archive/tv-series"
	defaultQueueFile           = "/data/scratch/conversion.txt"
	defaultStateDir            = "~/.local/share/mediaconv"
	defaultLogDir              = "~/.local/share/mediaconv/logs"
	defaultRejectPrefix        = "/share/seeding"
	defaultTMDBLanguage        = "en-US"
	defaultTMDBBaseURL         = "https://api.themoviedb.org/3"
	defaultTMDBTimeoutSeconds  = 10
	defaultFFmpegBinary        = "ffmpeg"
	defaultFFprobeBinary       = "ffprobe"
	defaultQSVDevice           = "/dev/dri/renderD128"
	defaultGlobalQuality       = 23
	defaultDenoiseLevel        = 15
	defaultMaxAttempts         = 3
	defaultAttemptTimeout      = 4 * 60 * 60
	defaultCooldownSeconds     = 2
	defaultSampleMinMiB        = 50
	defaultRomanianFold        = "comma"
	defaultNotifyTimeout       = 10
	defaultSMTPPort            = 587
	defaultLogExcerptLines     = 40
	defaultWorkers             = 1
	defaultQueuePollInterval   = 60
	defaultErrorRetryInterval  = 10
	defaultLeaseSeconds        = 6 * 60 * 60
	defaultLeaseRenewSeconds   = 60
	defaultJobRetentionDays    = 30
	defaultIngestDebounceMS    = 500
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 60
	minimumLeaseRenewMultiples = 3
)

// Mutation dimension names accepted in encoding.mutation_order.
const (
	DimensionFrameBuffers = "frame_buffers"
	DimensionBFrames      = "b_frames"
	DimensionPaddingMode  = "padding_mode"
)

// DefaultMutationOrder is the priority used when encoding.mutation_order is empty.
func DefaultMutationOrder() []string {
	return []string{DimensionFrameBuffers, DimensionBFrames, DimensionPaddingMode}
}

func defaultKeepExtensions() []string {
	return []string{".mp4", ".srt", ".sub", ".ass", ".sup", ".idx"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			MoviesRoot:      defaultMoviesRoot,
			TVRoot:          defaultTVRoot,
			TargetMoviesDir: defaultTargetMoviesDir,
			TargetTVDir:     defaultTargetTVDir,
			QueueFile:       defaultQueueFile,
			StateDir:        defaultStateDir,
			LogDir:          defaultLogDir,
			RejectPrefixes:  []string{defaultRejectPrefix},
		},
		TMDB: TMDB{
			BaseURL:        defaultTMDBBaseURL,
			Language:       defaultTMDBLanguage,
			TimeoutSeconds: defaultTMDBTimeoutSeconds,
		},
		Encoding: Encoding{
			FFmpegBinary:    defaultFFmpegBinary,
			FFprobeBinary:   defaultFFprobeBinary,
			QSVDevice:       defaultQSVDevice,
			GlobalQuality:   defaultGlobalQuality,
			DenoiseLevel:    defaultDenoiseLevel,
			MaxAttempts:     defaultMaxAttempts,
			MutationOrder:   DefaultMutationOrder(),
			AttemptTimeout:  defaultAttemptTimeout,
			CooldownSeconds: defaultCooldownSeconds,
			SampleMinMiB:    defaultSampleMinMiB,
		},
		Subtitles: Subtitles{
			Enabled:       true,
			RomanianFold:  defaultRomanianFold,
			ExtractTracks: true,
		},
		Notifications: Notifications{
			RequestTimeout:  defaultNotifyTimeout,
			SMTPPort:        defaultSMTPPort,
			LogExcerptLines: defaultLogExcerptLines,
		},
		Finalize: Finalize{
			KeepExtensions: defaultKeepExtensions(),
			CleanupSource:  true,
		},
		Workflow: Workflow{
			Workers:            defaultWorkers,
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			LeaseSeconds:       defaultLeaseSeconds,
			LeaseRenewSeconds:  defaultLeaseRenewSeconds,
			RetentionDays:      defaultJobRetentionDays,
			IngestDebounceMS:   defaultIngestDebounceMS,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
